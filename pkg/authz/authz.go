package authz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
	userPrefix      = "user:"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy is a single allow rule.
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Enforcer decides whether a user may call an admin route. Policies live in
// the casbin_rule table.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*Enforcer, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db required")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy: %w", err)
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// DefaultPolicies grants admins every admin route.
func DefaultPolicies() []Policy {
	admin := SubjectForRole(enums.UserRoleAdmin)
	return []Policy{
		{Subject: admin, Object: "/admin/*", Action: "*"},
	}
}

// Bootstrap inserts the default policies when missing.
func (e *Enforcer) Bootstrap() error {
	for _, p := range DefaultPolicies() {
		if err := e.Grant(p.Subject, p.Object, p.Action); err != nil {
			return err
		}
	}
	return nil
}

// Allowed checks the user's direct policies first, then their role's.
func (e *Enforcer) Allowed(userID uuid.UUID, role enums.UserRole, object, action string) (bool, error) {
	if e == nil || e.enforcer == nil {
		return false, fmt.Errorf("authz enforcer unavailable")
	}
	obj, act := NormalizeObject(object), NormalizeAction(action)
	if userID != uuid.Nil {
		ok, err := e.enforcer.Enforce(SubjectForUser(userID), obj, act)
		if err != nil || ok {
			return ok, err
		}
	}
	if role == "" {
		return false, nil
	}
	return e.enforcer.Enforce(SubjectForRole(role), obj, act)
}

func (e *Enforcer) Grant(subject, object, action string) error {
	if e == nil || e.enforcer == nil {
		return fmt.Errorf("authz enforcer unavailable")
	}
	subject = strings.TrimSpace(subject)
	act := NormalizeAction(action)
	if subject == "" || act == "" {
		return fmt.Errorf("subject and action are required")
	}
	if _, err := e.enforcer.AddPolicy(subject, NormalizeObject(object), act); err != nil {
		return fmt.Errorf("grant policy: %w", err)
	}
	return nil
}

func (e *Enforcer) Revoke(subject, object, action string) error {
	if e == nil || e.enforcer == nil {
		return fmt.Errorf("authz enforcer unavailable")
	}
	if _, err := e.enforcer.RemovePolicy(strings.TrimSpace(subject), NormalizeObject(object), NormalizeAction(action)); err != nil {
		return fmt.Errorf("revoke policy: %w", err)
	}
	return nil
}

// Policies lists the rules attached directly to subject.
func (e *Enforcer) Policies(subject string) ([]Policy, error) {
	if e == nil || e.enforcer == nil {
		return nil, fmt.Errorf("authz enforcer unavailable")
	}
	rules, err := e.enforcer.GetFilteredPolicy(0, strings.TrimSpace(subject))
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	out := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		out = append(out, Policy{Subject: rule[0], Object: rule[1], Action: rule[2]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Object == out[j].Object {
			return out[i].Action < out[j].Action
		}
		return out[i].Object < out[j].Object
	})
	return out, nil
}

func SubjectForRole(role enums.UserRole) string {
	return rolePrefix + string(role)
}

func SubjectForUser(id uuid.UUID) string {
	return userPrefix + id.String()
}

// NormalizeObject strips the API version prefix so policies stay stable
// across versions.
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	return normalized
}

func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
