package entity

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&User{},
		&Brand{},
		&News{},
		&Wish{},
		&Reservation{},
		&Candidate{},
		&Notification{},
		&Premium{},
		&Subscription{},
	}
}
