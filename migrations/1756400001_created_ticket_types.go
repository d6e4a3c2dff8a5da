package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("ticket_types")

		col.Fields.Add(
			&core.TextField{Name: "event_id", Required: true, Max: 64},
			&core.TextField{Name: "name", Required: true, Max: 255},
			&core.EditorField{Name: "description"},
			&core.NumberField{Name: "price", Required: true},
			&core.NumberField{Name: "total_stock", Required: true, OnlyInt: true},
			&core.NumberField{Name: "remaining_stock", OnlyInt: true},
			&core.NumberField{Name: "max_per_user", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		col.AddIndex("idx_ticket_types_event", false, "event_id", "")

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
