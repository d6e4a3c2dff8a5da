package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("reservations")

		col.Fields.Add(
			&core.TextField{Name: "reservation_id", Required: true, Max: 64},
			&core.TextField{Name: "event_id", Required: true, Max: 64},
			&core.TextField{Name: "user_id", Required: true, Max: 64},
			&core.TextField{Name: "ticket_type_id", Required: true, Max: 64},
			&core.NumberField{Name: "quantity", Required: true, OnlyInt: true},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1,
				Values: []string{"pending", "paid", "expired", "cancelled"}},
			&core.DateField{Name: "expires_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		col.AddIndex("idx_reservations_rsv_id", true, "reservation_id", "")
		col.AddIndex("idx_reservations_user", false, "event_id, user_id, status", "")
		// The reconciliation sweep scans by (status, expires_at).
		col.AddIndex("idx_reservations_expiry", false, "status, expires_at", "")

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("reservations")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
