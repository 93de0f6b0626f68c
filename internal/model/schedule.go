package model

// OpeningHours is the regular opening window for one day of the week.
// Weekday follows time.Weekday (0 = Sunday).  Open and Close are HH:MM;
// Close may be "24:00".
type OpeningHours struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open"`
	Close   string `json:"close"`
}

// Holiday overrides the opening hours of a single date.  When Closed is
// true the restaurant does not take bookings that day; otherwise Open and
// Close, when both set, replace the weekly window.
type Holiday struct {
	Date   string  `json:"date"`
	Closed bool    `json:"closed"`
	Open   *string `json:"open,omitempty"`
	Close  *string `json:"close,omitempty"`
	Note   *string `json:"note,omitempty"`
}
