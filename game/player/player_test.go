package player

import "testing"

func TestSeatNext(t *testing.T) {
	nextTests := []struct {
		seat Seat
		want Seat
	}{
		{1, 2},
		{2, 3},
		{3, 4},
		{4, 1},
	}
	for i, test := range nextTests {
		if want, got := test.want, test.seat.Next(); want != got {
			t.Errorf("Test %v: next seat after %v: wanted %v, got %v", i, test.seat, want, got)
		}
	}
}

func TestSeatColor(t *testing.T) {
	colorTests := []struct {
		seat Seat
		want Color
	}{
		{0, ""},
		{1, Red},
		{2, Green},
		{3, Yellow},
		{4, Blue},
		{5, ""},
	}
	for i, test := range colorTests {
		if want, got := test.want, test.seat.Color(); want != got {
			t.Errorf("Test %v: wanted %q, got %q", i, want, got)
		}
	}
}

func TestSeats(t *testing.T) {
	seats := Seats()
	if len(seats) != NumSeats {
		t.Fatalf("wanted %v seats, got %v", NumSeats, len(seats))
	}
	for i, s := range seats {
		if s.Index() != i || !s.Valid() {
			t.Errorf("seat %v at index %v is not valid", s, i)
		}
	}
}
