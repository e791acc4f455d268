package scopes

// ActionKey names a scope-enforced operation. Keys are dotted and
// hierarchical; registration is closed at startup, so a typo in a key
// fails the boot instead of silently denying in production.
type ActionKey string

// Available action keys in the system.
const (
	// ActionApprovalView view approval requests.
	ActionApprovalView ActionKey = "process.approval.request.view"
	// ActionApprovalDecide approve or reject approval requests.
	ActionApprovalDecide ActionKey = "process.approval.request.decide"
	// ActionApprovalManage manage approval requests (edit, cancel, delete).
	ActionApprovalManage ActionKey = "process.approval.request.manage"

	// ActionUserView view users of the system.
	ActionUserView ActionKey = "process.approval.user.view"
)

// Action binds an action key to the rule that resolves a caller's scope
// for it.
type Action struct {
	Key         ActionKey
	Description string
	Rule        Rule
}

// actionConfigs defines all registered actions with their resolution rules.
//
// Relations are expanded through the permission store: "supervises" rows
// say whose requests a caller may see and decide. Owners always resolve
// to an unrestricted scope.
var actionConfigs = []Action{
	{
		Key:         ActionApprovalView,
		Description: "View approval requests of supervised users",
		Rule:        OwnerUnrestricted(Relation("supervises", IncludeSelf())),
	},
	{
		Key:         ActionApprovalDecide,
		Description: "Decide approval requests of supervised users",
		Rule:        OwnerUnrestricted(Relation("supervises")),
	},
	{
		Key:         ActionApprovalManage,
		Description: "Manage approval requests (edit, cancel, delete)",
		Rule:        OwnerUnrestricted(Self()),
	},
	{
		Key:         ActionUserView,
		Description: "View users visible to the caller",
		Rule:        OwnerUnrestricted(Relation("supervises", IncludeSelf())),
	},
}

// AllActions returns all registered actions.
func AllActions() []Action {
	actions := make([]Action, len(actionConfigs))
	copy(actions, actionConfigs)

	return actions
}

// AllActionKeysAsStrings returns all registered action keys as strings.
func AllActionKeysAsStrings() []string {
	result := make([]string, len(actionConfigs))
	for i, action := range actionConfigs {
		result[i] = string(action.Key)
	}

	return result
}

// IsValidActionKey checks if an action key is registered.
func IsValidActionKey(key string) bool {
	for _, action := range actionConfigs {
		if string(action.Key) == key {
			return true
		}
	}

	return false
}

// DefaultRegistry builds the registry from the declared action table.
// The table is package data, so a malformed entry is a programming
// error and panics at init of the caller.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(actionConfigs...)
	if err != nil {
		panic(err)
	}

	return registry
}
