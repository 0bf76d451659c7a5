package orders

import "time"

type Buckets struct {
	Today    []Order `json:"today"`
	Tomorrow []Order `json:"tomorrow"`
}

// Bucket groups orders delivered on now's calendar day and on the day after.
// Days are taken in now's location, midnight to midnight. Orders outside
// both days are left out; the input slice is not modified.
func Bucket(orders []Order, now time.Time) Buckets {
	loc := now.Location()
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	tomorrowStart := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	dayAfterStart := time.Date(y, m, d+2, 0, 0, 0, 0, loc)

	b := Buckets{Today: []Order{}, Tomorrow: []Order{}}
	for _, o := range orders {
		at := o.DeliveryDate.In(loc)
		switch {
		case at.Before(todayStart):
		case at.Before(tomorrowStart):
			b.Today = append(b.Today, o)
		case at.Before(dayAfterStart):
			b.Tomorrow = append(b.Tomorrow, o)
		}
	}

	SortByDeliveryDate(b.Today)
	SortByDeliveryDate(b.Tomorrow)
	return b
}
