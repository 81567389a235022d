package entity

import "errors"

var (
	// Task errors
	ErrTaskNotFound = errors.New("task not found")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Settings errors
	ErrSettingsNotFound = errors.New("reminder settings not found")
	ErrInvalidSettings  = errors.New("invalid reminder settings")

	// Scheduler errors
	ErrSchedulerNotRunning = errors.New("reminder scheduler is not running")
	ErrQueueFull           = errors.New("reminder queue is full")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
