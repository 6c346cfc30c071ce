package access

import "github.com/mentorlink/go-mentor-client/identity"

// MenuItem is one navigation entry
type MenuItem struct {
	Label string
	Route string
}

// menuOrder fixes the navigation layout; every entry's route must have a rule
// in the table so the menu can never show a link its role cannot open.
var menuOrder = []MenuItem{
	{Label: "Dashboard", Route: "/admin"},
	{Label: "Dashboard", Route: "/mentor"},
	{Label: "Dashboard", Route: "/mentee"},
	{Label: "Users", Route: "/users"},
	{Label: "My Mentees", Route: "/mentor/mentees"},
	{Label: "My Mentors", Route: "/mentee/mentors"},
	{Label: "Sessions", Route: "/sessions"},
	{Label: "Calendar", Route: "/calendar"},
	{Label: "Resources", Route: "/resources"},
	{Label: "Chat", Route: "/chat"},
	{Label: "Announcements", Route: "/announcements"},
	{Label: "Video Call", Route: "/video-call"},
	{Label: "Profile", Route: "/profile"},
}

// Menu builds the navigation menu for user from the same table and decision
// function the route guards use
func (r Rules) Menu(user *identity.User) []MenuItem {
	var items []MenuItem
	for _, item := range menuOrder {
		if r.Decide(user, item.Route) == Allow {
			items = append(items, item)
		}
	}
	return items
}

// Default wires the menu helpers to the platform's rule table
func Menu(user *identity.User) []MenuItem {
	return DefaultRules.Menu(user)
}

// Decide checks a route against the platform's rule table
func Decide(user *identity.User, route string) Decision {
	return DefaultRules.Decide(user, route)
}
