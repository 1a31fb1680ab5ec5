package models

import "time"

// SessionStatus represents the current state of the kept-alive browser session
type SessionStatus string

const (
	StatusStarting SessionStatus = "STARTING"
	StatusRunning  SessionStatus = "RUNNING"
	StatusStopping SessionStatus = "STOPPING"
	StatusStopped  SessionStatus = "STOPPED"
)

// Outcome records the result of the latest run of one persistence operation
type Outcome struct {
	At    time.Time `json:"at"`
	OK    bool      `json:"ok"`
	Count int       `json:"count"`
	Error string    `json:"error,omitempty"`
}

// Session is the public view of the running session
type Session struct {
	ID           string             `json:"id"`
	Status       SessionStatus      `json:"status"`
	SinglePage   string             `json:"singlePage,omitempty"`
	LandingPage  string             `json:"landingPage"`
	StartedAt    time.Time          `json:"startedAt"`
	SaveInterval string             `json:"saveInterval"`
	Cycles       int                `json:"cycles"`
	Operations   map[string]Outcome `json:"operations"`
	ConnectURL   string             `json:"-"`
}
