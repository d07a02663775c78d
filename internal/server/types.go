package server

// HTTPError is the uniform error body returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ProjectCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type IdeaCreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type IdeaHelperRequest struct {
	Message string `json:"message"`
}

type PlanOrganizeRequest struct {
	Instruction string `json:"instruction"`
}

type AgentSearchRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
	Mode     string `json:"mode"` // "create" (default) or "append"
}

type SavedSearchCreateRequest struct {
	Query    string `json:"query"`
	CronExpr string `json:"cron_expr"`
}
