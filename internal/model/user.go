// Package model defines the data structures used throughout the application.
package model

import "time"

// User is someone tracking deals through the WhatsApp bot.
//
// Users are created by the bot's ingestion process, not by this service;
// the dashboard only reads them. PhoneNumber is the natural key (UNIQUE in
// the database) and is what people type into the dashboard lookup.
type User struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}
