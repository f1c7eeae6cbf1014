package search

// Result is a single history-feed search hit.
type Result struct {
	ID           string `json:"id"`
	TaskID       string `json:"taskId"`
	Action       string `json:"action"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	ActorDisplay string `json:"actorDisplay"`
}

// Query describes an audit search request.
type Query struct {
	Text         string
	FilterTaskID string // empty = all tasks
	FilterAction string // empty = all actions
	Limit        int
	Offset       int
}

// Response is the envelope returned to callers.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over history events.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push history events into a search index.
type Indexer interface {
	IndexEvent(e EventRecord) error
	IndexEvents(events []EventRecord) error
}

// EventRecord is the data we index for a history event. History rows are
// immutable, so there is no delete path.
type EventRecord struct {
	ID           string `json:"id"`
	TaskID       string `json:"taskId"`
	Action       string `json:"action"`
	Title        string `json:"title"`
	ActorDisplay string `json:"actorDisplay"`
	CreatedBy    string `json:"createdBy"`
}
