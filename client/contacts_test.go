package client

import (
	"testing"
	"time"

	"dm-service/wire"

	"github.com/go-playground/assert/v2"
)

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func TestSortContacts(t *testing.T) {
	contacts := []wire.Contact{
		{Id: 1},
		{Id: 2, LastMessageAt: at(100)},
		{Id: 3},
		{Id: 4, LastMessageAt: at(300)},
		{Id: 5, LastMessageAt: at(200)},
	}

	SortContacts(contacts)

	ids := []uint{}
	for _, contact := range contacts {
		ids = append(ids, contact.Id)
	}
	assert.Equal(t, ids, []uint{4, 5, 2, 1, 3})
}
