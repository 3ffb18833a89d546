package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/days"
	"calgrid/internal/i18n"
	"calgrid/internal/model"
	"calgrid/internal/store"
	"calgrid/internal/web"
)

func newLayoutCmd(app *App) *cobra.Command {
	var (
		date     string
		view     string
		mode     string
		icsFiles []string
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the layout of the view containing a date as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			loc := cfg.Location()
			now := time.Now().In(loc)

			req := web.LayoutRequest{Date: days.Start(now)}
			if date != "" {
				d, err := days.ParseKey(date, loc)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date))
				}
				req.Date = d
			}
			if cmd.Flags().Changed("view") {
				req.View, req.ViewSet = model.ParseViewKind(view), true
			}
			if cmd.Flags().Changed("mode") {
				req.Mode, req.ModeSet = model.ParseDisplayMode(mode), true
			}

			st := store.New(loc)
			loadEvents(cmd.Context(), cfg, st, icsSources(cfg, icsFiles))

			resp := web.BuildLayout(cfg, st, i18n.New(cfg.Locale), req, now)
			return writeOut(cmd, app, resp)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day inside the view (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&view, "view", "week", "View: day|week|multi_day|month|agenda")
	cmd.Flags().StringVar(&mode, "mode", "side-by-side", "Display mode: side-by-side|overlapping")
	cmd.Flags().StringSliceVar(&icsFiles, "ics", nil, "Extra .ics files to import (repeatable)")
	return cmd
}
