package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("ticketing_events")

		col.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 255},
			&core.EditorField{Name: "description"},
			&core.DateField{Name: "event_date"},
			&core.TextField{Name: "venue", Max: 255},
			&core.NumberField{Name: "max_active", OnlyInt: true},
			&core.NumberField{Name: "active_ttl_seconds", OnlyInt: true},
			&core.NumberField{Name: "reservation_ttl_seconds", OnlyInt: true},
			&core.NumberField{Name: "payment_ttl_seconds", OnlyInt: true},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"closed", "open"}},
			&core.DateField{Name: "opened_at"},
			&core.DateField{Name: "closed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		col.AddIndex("idx_ticketing_events_status", false, "status", "")

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("ticketing_events")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
