package ai

import (
	"errors"
	"fmt"
)

// Action is what the user asked the assistant to do with their bookmarks.
type Action string

const (
	// ActionAdd bookmarks one or more urls.
	ActionAdd Action = "add"
	// ActionSearch finds bookmarks by similarity to free text.
	ActionSearch Action = "search"
	// ActionList shows the bookmarks in a category (and its subcategories).
	ActionList Action = "list"
	// ActionMove re-categorizes a single bookmark.
	ActionMove Action = "move"
	// ActionMoveCategory re-parents every bookmark under a category path.
	ActionMoveCategory Action = "move_category"
	// ActionDelete removes a bookmark by url.
	ActionDelete Action = "delete"
	// ActionDeleteCategory removes every bookmark under a category path.
	ActionDeleteCategory Action = "delete_category"
	// ActionCategories shows the category hierarchy.
	ActionCategories Action = "categories"
	// ActionReply answers the user directly, touching no bookmarks.
	ActionReply Action = "reply"
)

var ErrBadCommand = errors.New("bad command")

// Command is the interpreted form of a chat message: one action plus the
// parameters that action needs. It doubles as the JSON schema the model is
// asked to fill in, so the field descriptions are written for the model.
type Command struct {
	Action Action `json:"action" json-description:"What the user wants done. One of: add (bookmark urls), search (find bookmarks matching free text), list (show bookmarks in a category), move (re-categorize one bookmark), move_category (move all bookmarks under a category to a new parent), delete (remove a bookmark by url), delete_category (remove all bookmarks under a category), categories (show the category hierarchy), reply (no bookmark operation needed, answer directly)"`

	URLs []string `json:"urls,omitempty" json-description:"The urls to bookmark, for the add action"`
	URL  string   `json:"url,omitempty" json-description:"The url of the bookmark to move or delete"`

	Query      string `json:"query,omitempty" json-description:"The search text, for the search action"`
	MaxResults int    `json:"max_results,omitempty" json-minimum:"1" json-maximum:"25" json-description:"Maximum number of search results wanted, defaulting to 5"`

	Category    string `json:"category,omitempty" json-description:"A category path like 'Technology/Programming'. The target category for list, move and delete_category, and the source for move_category"`
	NewCategory string `json:"new_category,omitempty" json-description:"The destination category path, for the move_category action"`
	Guidance    string `json:"guidance,omitempty" json-description:"The user's wishes about categorization when adding, if any"`

	Reply string `json:"reply,omitempty" json-description:"The direct answer to the user, for the reply action"`
}

// Validate checks that the parameters an action depends on are present.
func (c Command) Validate() error {
	switch c.Action {
	case ActionAdd:
		if len(c.URLs) == 0 {
			return fmt.Errorf("%w: add without urls", ErrBadCommand)
		}
	case ActionSearch:
		if c.Query == "" {
			return fmt.Errorf("%w: search without a query", ErrBadCommand)
		}
	case ActionList:
		if c.Category == "" {
			return fmt.Errorf("%w: list without a category", ErrBadCommand)
		}
	case ActionMove:
		if c.URL == "" || c.Category == "" {
			return fmt.Errorf("%w: move needs a url and a category", ErrBadCommand)
		}
	case ActionMoveCategory:
		if c.Category == "" || c.NewCategory == "" {
			return fmt.Errorf("%w: move_category needs a source and a destination", ErrBadCommand)
		}
	case ActionDelete:
		if c.URL == "" {
			return fmt.Errorf("%w: delete without a url", ErrBadCommand)
		}
	case ActionDeleteCategory:
		if c.Category == "" {
			return fmt.Errorf("%w: delete_category without a category", ErrBadCommand)
		}
	case ActionCategories, ActionReply:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadCommand, c.Action)
	}
	return nil
}
