package actions

// AddTagActions maps a canonical tag to the action scheduled when the tag is
// added to a thread.
var AddTagActions = map[string]string{
	"inbox":   "unarchive",
	"archive": "archive",
	"starred": "star",
	"unread":  "mark_unread",
	"spam":    "mark_spam",
	"trash":   "mark_trash",
}

// RemoveTagActions maps a canonical tag to the action scheduled when the tag
// is removed from a thread.
var RemoveTagActions = map[string]string{
	"inbox":   "archive",
	"archive": "unarchive",
	"starred": "unstar",
	"unread":  "mark_read",
	"spam":    "unmark_spam",
	"trash":   "unmark_trash",
}

// ActionForTag resolves the action for a tag mutation. Unknown tags resolve
// to no action.
func ActionForTag(tag string, added bool) (string, bool) {
	table := RemoveTagActions
	if added {
		table = AddTagActions
	}
	action, ok := table[tag]
	return action, ok
}
