package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit: MaxLimit, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(MaxLimit) != MaxLimit+1 {
		t.Fatalf("expected buffer row on top of the max limit")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(c))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(c.CreatedAt) || parsed.ID != c.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", parsed, c)
	}
	if empty, err := ParseCursor("  "); err != nil || empty != nil {
		t.Fatalf("blank cursor should parse to nil, got %+v %v", empty, err)
	}
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatal("expected decode error")
	}
}

type row struct {
	id uuid.UUID
	at time.Time
}

func TestTrimReturnsNextCursorOnlyWhenMoreRowsExist(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{id: uuid.New(), at: base.Add(time.Duration(i) * time.Minute)}
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 3, cursorOf)
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}
	decoded, err := ParseCursor(next)
	if err != nil || decoded == nil {
		t.Fatalf("expected next cursor, got %q (%v)", next, err)
	}
	if decoded.ID != rows[2].id {
		t.Fatalf("cursor should point at the last returned row")
	}

	page, next = Trim(rows[:3], 3, cursorOf)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected final page without cursor, got %d rows next=%q", len(page), next)
	}
}
