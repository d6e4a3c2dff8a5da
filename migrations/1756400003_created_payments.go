package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("payments")

		col.Fields.Add(
			&core.TextField{Name: "payment_id", Required: true, Max: 64},
			&core.TextField{Name: "reservation_id", Required: true, Max: 64},
			&core.TextField{Name: "event_id", Required: true, Max: 64},
			&core.TextField{Name: "user_id", Required: true, Max: 64},
			&core.TextField{Name: "pg_order_id", Required: true, Max: 128},
			&core.NumberField{Name: "amount", Required: true, OnlyInt: true},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1,
				Values: []string{"pending", "confirmed", "failed", "cancelled"}},
			&core.TextField{Name: "pg_payment_key", Max: 255},
			// Raw gateway response, kept verbatim for dispute handling.
			&core.TextField{Name: "pg_response"},
			&core.DateField{Name: "expires_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		col.AddIndex("idx_payments_order_id", true, "pg_order_id", "")
		col.AddIndex("idx_payments_user", false, "event_id, user_id", "")
		col.AddIndex("idx_payments_expiry", false, "status, expires_at", "")

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return nil
		}
		return app.Delete(col)
	})
}
