package index

import (
	"fmt"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// ResultAuthorizer decides, per hit, whether the caller identified by a
// security token may see a resource, given the resource's stored
// read-aggregate principals.
type ResultAuthorizer interface {
	Authorize(token string, readAggregate []repository.Principal) bool
}

// PrincipalResolver resolves a security token to the caller's principal
// and group memberships. An unknown or expired token resolves to an
// error; the caller is then treated as anonymous.
type PrincipalResolver interface {
	Resolve(token string) (repository.Principal, []repository.Principal, error)
}

// AggregateAuthorizer authorizes hits against the pre-aggregated read
// principals stored with each document.
type AggregateAuthorizer struct {
	resolver PrincipalResolver
	logger   *logging.Logger
}

// NewAggregateAuthorizer creates the default result authorizer.
func NewAggregateAuthorizer(resolver PrincipalResolver, logger *logging.Logger) *AggregateAuthorizer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &AggregateAuthorizer{
		resolver: resolver,
		logger:   logger.WithComponent("result-authorizer"),
	}
}

// Authorize implements ResultAuthorizer. The all-users pseudo-principal
// grants every caller, the authenticated pseudo-principal any caller
// with a resolvable token, and otherwise the caller's own principal or
// one of its groups must appear in the aggregate.
func (a *AggregateAuthorizer) Authorize(token string, readAggregate []repository.Principal) bool {
	for _, p := range readAggregate {
		if p == repository.PrincipalAll {
			return true
		}
	}
	if token == "" || a.resolver == nil {
		return false
	}

	user, groups, err := a.resolver.Resolve(token)
	if err != nil {
		a.logger.Debugf("token resolution failed, treating caller as anonymous: %v", err)
		return false
	}

	for _, p := range readAggregate {
		if p == repository.PrincipalAuthenticated {
			return true
		}
		if p == user {
			return true
		}
		if p.Type == repository.PrincipalTypeGroup {
			for _, g := range groups {
				if p == g {
					return true
				}
			}
		}
	}
	return false
}

// StaticPrincipalResolver maps tokens to principals from a fixed table,
// for tooling and tests.
type StaticPrincipalResolver struct {
	Users  map[string]repository.Principal
	Groups map[string][]repository.Principal
}

// Resolve implements PrincipalResolver.
func (r *StaticPrincipalResolver) Resolve(token string) (repository.Principal, []repository.Principal, error) {
	user, ok := r.Users[token]
	if !ok {
		return repository.Principal{}, nil, fmt.Errorf("unknown security token")
	}
	return user, r.Groups[token], nil
}
