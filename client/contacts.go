package client

import (
	"slices"

	"dm-service/wire"
)

// SortContacts orders contacts by most recent message, newest first.
// Contacts without any message go last, keeping their relative order.
func SortContacts(contacts []wire.Contact) {
	slices.SortStableFunc(contacts, func(a, b wire.Contact) int {
		switch {
		case a.LastMessageAt == nil && b.LastMessageAt == nil:
			return 0
		case a.LastMessageAt == nil:
			return 1
		case b.LastMessageAt == nil:
			return -1
		}
		return b.LastMessageAt.Compare(*a.LastMessageAt)
	})
}
