package middleware

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	careAuth "github.com/MrEthical07/careAuth"
	"github.com/MrEthical07/careAuth/permission"
	"gopkg.in/yaml.v3"
)

// RouteRule is the access requirement for every path under PathPrefix.
// Roles and Permissions are each matched with OR semantics; a Public rule
// skips authentication entirely.
type RouteRule struct {
	PathPrefix  string                  `yaml:"path"`
	Roles       []permission.Role       `yaml:"roles,omitempty"`
	Permissions []permission.Permission `yaml:"permissions,omitempty"`
	Public      bool                    `yaml:"public,omitempty"`
}

func (r RouteRule) accessRule() careAuth.AccessRule {
	return careAuth.AccessRule{
		Roles:       r.Roles,
		Permissions: r.Permissions,
	}
}

// RuleSet is the route table read from a rules file.
type RuleSet struct {
	ProtectedAreas []string    `yaml:"protected_areas"`
	Routes         []RouteRule `yaml:"routes"`
}

// LoadRules parses a YAML rule file:
//
//	protected_areas: [/api/, /dashboard]
//	routes:
//	  - path: /api/auth/
//	    public: true
//	  - path: /api/admin/
//	    roles: [super_admin]
//	  - path: /api/assessments
//	    permissions: [assessments:read]
func LoadRules(r io.Reader) (RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, fmt.Errorf("decode route rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// LoadRulesFile reads and parses the rule file at path.
func LoadRulesFile(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("open route rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

// Validate rejects rules that could never match or that mix public access
// with requirements.
func (rs RuleSet) Validate() error {
	seen := make(map[string]struct{}, len(rs.Routes))
	for i, rule := range rs.Routes {
		if !strings.HasPrefix(rule.PathPrefix, "/") {
			return fmt.Errorf("route %d: path must start with /", i)
		}
		if _, dup := seen[rule.PathPrefix]; dup {
			return fmt.Errorf("route %d: duplicate path %q", i, rule.PathPrefix)
		}
		seen[rule.PathPrefix] = struct{}{}
		if rule.Public && (len(rule.Roles) > 0 || len(rule.Permissions) > 0) {
			return fmt.Errorf("route %q: public rules cannot require roles or permissions", rule.PathPrefix)
		}
		for _, role := range rule.Roles {
			if !role.Valid() {
				return fmt.Errorf("route %q: unknown role %d", rule.PathPrefix, role)
			}
		}
		for _, perm := range rule.Permissions {
			if !isKnownPermission(perm) {
				return fmt.Errorf("route %q: unknown permission %q", rule.PathPrefix, perm)
			}
		}
	}
	for _, area := range rs.ProtectedAreas {
		if !strings.HasPrefix(area, "/") {
			return fmt.Errorf("protected area %q must start with /", area)
		}
	}
	return nil
}

func isKnownPermission(p permission.Permission) bool {
	for _, known := range permission.All() {
		if known == p {
			return true
		}
	}
	return false
}

// routeTable resolves a path to its rule by longest prefix.
type routeTable struct {
	rules     []RouteRule
	protected []string
}

func newRouteTable(rs RuleSet) routeTable {
	rules := append([]RouteRule(nil), rs.Routes...)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].PathPrefix) > len(rules[j].PathPrefix)
	})
	return routeTable{
		rules:     rules,
		protected: append([]string(nil), rs.ProtectedAreas...),
	}
}

func (t routeTable) match(path string) (RouteRule, bool) {
	for _, rule := range t.rules {
		if prefixMatch(path, rule.PathPrefix) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

func (t routeTable) isProtected(path string) bool {
	for _, area := range t.protected {
		if prefixMatch(path, area) {
			return true
		}
	}
	return false
}

// prefixMatch matches on path segment boundaries: /api/users covers
// /api/users and /api/users/7 but not /api/usersettings.
func prefixMatch(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	return path[len(prefix)] == '/'
}
