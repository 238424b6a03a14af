package authz

import "sort"

// PolicyRule is one evaluable policy line. Subject is either a user id string
// or a role code; an empty Domain means the line is global.
type PolicyRule struct {
	Subject  string
	Domain   string
	Resource string
	Action   string
}

// GroupingEdge links a member (user id or child role code) to a role. An edge
// with an empty Domain applies in every domain; a scoped edge applies only to
// enforce calls for that exact domain.
type GroupingEdge struct {
	Member string
	Role   string
	Domain string
}

type memberKey struct {
	member string
	domain string
}

// PolicySet is the in-memory evaluation structure: a rule set plus adjacency
// maps for grouping edges in both directions. It carries no locking of its
// own; Service serializes mutations and guards reads.
type PolicySet struct {
	rules       map[PolicyRule]struct{}
	groups      map[memberKey]map[string]struct{} // (member, domain) -> roles
	roleMembers map[memberKey]map[string]struct{} // (role, domain) -> members
}

// NewPolicySet returns an empty policy set.
func NewPolicySet() *PolicySet {
	return &PolicySet{
		rules:       make(map[PolicyRule]struct{}),
		groups:      make(map[memberKey]map[string]struct{}),
		roleMembers: make(map[memberKey]map[string]struct{}),
	}
}

// AddRule inserts a policy line. Returns false if it was already present.
func (p *PolicySet) AddRule(rule PolicyRule) bool {
	if _, ok := p.rules[rule]; ok {
		return false
	}
	p.rules[rule] = struct{}{}
	return true
}

// RemoveRule deletes a policy line. Returns false if it was absent.
func (p *PolicySet) RemoveRule(rule PolicyRule) bool {
	if _, ok := p.rules[rule]; !ok {
		return false
	}
	delete(p.rules, rule)
	return true
}

// HasRule reports literal membership of a policy line.
func (p *PolicySet) HasRule(rule PolicyRule) bool {
	_, ok := p.rules[rule]
	return ok
}

// AddGroupingEdge inserts a member->role edge. Returns false if present.
func (p *PolicySet) AddGroupingEdge(edge GroupingEdge) bool {
	mk := memberKey{edge.Member, edge.Domain}
	if _, ok := p.groups[mk][edge.Role]; ok {
		return false
	}
	if p.groups[mk] == nil {
		p.groups[mk] = make(map[string]struct{})
	}
	p.groups[mk][edge.Role] = struct{}{}

	rk := memberKey{edge.Role, edge.Domain}
	if p.roleMembers[rk] == nil {
		p.roleMembers[rk] = make(map[string]struct{})
	}
	p.roleMembers[rk][edge.Member] = struct{}{}
	return true
}

// RemoveGroupingEdge deletes a member->role edge. Returns false if absent.
func (p *PolicySet) RemoveGroupingEdge(edge GroupingEdge) bool {
	mk := memberKey{edge.Member, edge.Domain}
	if _, ok := p.groups[mk][edge.Role]; !ok {
		return false
	}
	delete(p.groups[mk], edge.Role)
	if len(p.groups[mk]) == 0 {
		delete(p.groups, mk)
	}
	rk := memberKey{edge.Role, edge.Domain}
	delete(p.roleMembers[rk], edge.Member)
	if len(p.roleMembers[rk]) == 0 {
		delete(p.roleMembers, rk)
	}
	return true
}

// expand returns the subject itself plus every role transitively reachable
// through grouping edges, breadth-first. Global edges are followed for any
// domain; scoped edges only when the domain matches exactly.
func (p *PolicySet) expand(subject, domain string) map[string]struct{} {
	seen := map[string]struct{}{subject: {}}
	frontier := []string{subject}
	for len(frontier) > 0 {
		member := frontier[0]
		frontier = frontier[1:]
		for role := range p.groups[memberKey{member, ""}] {
			if _, ok := seen[role]; !ok {
				seen[role] = struct{}{}
				frontier = append(frontier, role)
			}
		}
		if domain != "" {
			for role := range p.groups[memberKey{member, domain}] {
				if _, ok := seen[role]; !ok {
					seen[role] = struct{}{}
					frontier = append(frontier, role)
				}
			}
		}
	}
	return seen
}

// Enforce answers one access tuple by literal membership: the subject and all
// roles reachable from it are tested against lines for exactly the requested
// domain (or exactly the global scope when no domain is given).
func (p *PolicySet) Enforce(subject, domain, resource, action string) bool {
	for s := range p.expand(subject, domain) {
		if p.HasRule(PolicyRule{Subject: s, Domain: domain, Resource: resource, Action: action}) {
			return true
		}
	}
	return false
}

// RolesForSubject lists every role transitively reachable from the subject,
// sorted. The subject itself is not included.
func (p *PolicySet) RolesForSubject(subject, domain string) []string {
	seen := p.expand(subject, domain)
	delete(seen, subject)
	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// MembersOfRole lists direct members of a role (users and inheriting roles),
// sorted. Global edges and edges scoped to the given domain both count.
func (p *PolicySet) MembersOfRole(role, domain string) []string {
	seen := make(map[string]struct{})
	for member := range p.roleMembers[memberKey{role, ""}] {
		seen[member] = struct{}{}
	}
	if domain != "" {
		for member := range p.roleMembers[memberKey{role, domain}] {
			seen[member] = struct{}{}
		}
	}
	members := make([]string, 0, len(seen))
	for member := range seen {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}

// RulesForSubject lists the policy lines attached directly to the subject.
func (p *PolicySet) RulesForSubject(subject string) []PolicyRule {
	var out []PolicyRule
	for rule := range p.rules {
		if rule.Subject == subject {
			out = append(out, rule)
		}
	}
	sortRules(out)
	return out
}

// RulesForResource lists the policy lines protecting a resource.
func (p *PolicySet) RulesForResource(resource string) []PolicyRule {
	var out []PolicyRule
	for rule := range p.rules {
		if rule.Resource == resource {
			out = append(out, rule)
		}
	}
	sortRules(out)
	return out
}

// RemoveSubject drops every rule and grouping edge referencing the subject,
// as rule owner, edge member, or edge target. Returns the number of entries
// removed.
func (p *PolicySet) RemoveSubject(subject string) int {
	removed := 0
	for rule := range p.rules {
		if rule.Subject == subject {
			delete(p.rules, rule)
			removed++
		}
	}
	for mk, roles := range p.groups {
		if mk.member == subject {
			for role := range roles {
				p.RemoveGroupingEdge(GroupingEdge{Member: subject, Role: role, Domain: mk.domain})
				removed++
			}
			continue
		}
		if _, ok := roles[subject]; ok {
			p.RemoveGroupingEdge(GroupingEdge{Member: mk.member, Role: subject, Domain: mk.domain})
			removed++
		}
	}
	return removed
}

// RemoveEdgesForMember drops every grouping edge whose member matches.
// Returns the number of edges removed.
func (p *PolicySet) RemoveEdgesForMember(member string) int {
	removed := 0
	for mk, roles := range p.groups {
		if mk.member != member {
			continue
		}
		for role := range roles {
			p.RemoveGroupingEdge(GroupingEdge{Member: member, Role: role, Domain: mk.domain})
			removed++
		}
	}
	return removed
}

// Counts reports the number of rules and grouping edges in the set.
func (p *PolicySet) Counts() (rules, edges int) {
	rules = len(p.rules)
	for _, roles := range p.groups {
		edges += len(roles)
	}
	return rules, edges
}

func sortRules(rules []PolicyRule) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Action < b.Action
	})
}
