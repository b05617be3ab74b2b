// Package common contains shared constants and sentinel errors used across
// gymsync components.
package common

// DateOnly is the layout used for calendar dates everywhere a subscription
// date crosses a storage or wire boundary. Dates carry no time component.
const DateOnly = "2006-01-02"

// NotifyChannel is the PostgreSQL notification channel carrying subscriber
// change events. The payload is the owner id of the affected row.
const NotifyChannel = "subscriber_changes"
