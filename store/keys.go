package store

import "fmt"

// Key layout for the live store. Everything for one event hangs off the
// tkt:<eventId> prefix; the open-events set is the only global key.

func WaitingKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:waiting", eventID)
}

func ActiveKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:active", eventID)
}

func ActiveCountKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:active_count", eventID)
}

func StockKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:stock", eventID)
}

func ReservationKey(eventID, userID string) string {
	return fmt.Sprintf("tkt:%s:rsv:%s", eventID, userID)
}

func PaymentKey(eventID, userID string) string {
	return fmt.Sprintf("tkt:%s:pay:%s", eventID, userID)
}

func StateKey(eventID, userID string) string {
	return fmt.Sprintf("tkt:%s:state:%s", eventID, userID)
}

// StateKeyPrefix is handed to scripts that set state keys for users they
// discover while running (admission, active-slot expiry).
func StateKeyPrefix(eventID string) string {
	return fmt.Sprintf("tkt:%s:state:", eventID)
}

func ConfigKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:config", eventID)
}

func OpenEventsKey() string {
	return "tkt:events:open"
}

func AdmissionLockKey(eventID string) string {
	return fmt.Sprintf("tkt:%s:lock:admission", eventID)
}
