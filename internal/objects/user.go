package objects

type UserInfo struct {
	GUID       string            `json:"guid"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	IsOwner    bool              `json:"isOwner"`
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type APIKeyInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}
