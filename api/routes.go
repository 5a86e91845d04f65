package api

const (
	// PingEndpoint is the path to the ping endpoint, used to check the
	// API status.
	PingEndpoint = "/ping"
	// StatusEndpoint is the path to the pipeline status endpoint.
	StatusEndpoint = "/status"
	// VotesEndpoint is the path to the recent votes journal endpoint.
	VotesEndpoint = "/votes"
	// ActionsEndpoint is the path to the recent actions journal endpoint.
	ActionsEndpoint = "/actions"
)
