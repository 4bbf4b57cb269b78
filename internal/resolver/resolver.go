// Package resolver fills in the facts a run needs but the operator did not
// supply: which platform is installed, where its dashboard lives, and where
// legacy dashboard URLs should be redirected.
//
// Each fact is resolved by an ordered chain of strategies; the first strategy
// that produces a value wins and exhausting a chain is an error. Nothing is
// guessed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/config"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
)

const (
	gatewayRoute       = "data-science-gateway"
	legacyGatewayRoute = "data-science-gateway-legacy"
	nextGenHostMarker  = "rh-ai"
)

// ErrRedirectUnresolved is returned when no redirect URL can be found.
var ErrRedirectUnresolved = errors.New("unable to discover redirect URL: no matching ConsoleLink and no data-science-gateway route found")

// Overrides are operator-supplied values that short-circuit resolution.
type Overrides struct {
	RedirectURL string
	RouteHost   string
}

// RedirectTarget is one route that forwards legacy traffic to RedirectURL.
type RedirectTarget struct {
	Namespace   string
	RouteName   string
	RedirectURL string
	// Host is the route's spec.host. Empty lets the router assign one.
	Host string
}

// Facts is everything the redirect pipeline resolved.
type Facts struct {
	Identity          Identity
	RedirectURLSource string
	RouteHostSource   string
	// Targets holds the primary target first, followed by any extra
	// targets.
	Targets []RedirectTarget
}

type redirectStrategy struct {
	name    string
	resolve func(ctx context.Context, loc *locator.Locator) (string, bool)
}

func defaultRedirectChain() []redirectStrategy {
	return []redirectStrategy{
		{name: "consolelink", resolve: fromConsoleLink},
		{name: "route/" + gatewayRoute, resolve: fromGatewayRoute},
	}
}

// Resolver runs the resolution chains against a cluster.
type Resolver struct {
	loc           *locator.Locator
	platformChain []platformStrategy
	redirectChain []redirectStrategy
}

// New creates a Resolver with the default strategy chains.
func New(loc *locator.Locator) *Resolver {
	return &Resolver{
		loc:           loc,
		platformChain: defaultPlatformChain(),
		redirectChain: defaultRedirectChain(),
	}
}

// ResolvePlatform returns the first identity any platform strategy finds.
func (r *Resolver) ResolvePlatform(ctx context.Context) (Identity, error) {
	for _, s := range r.platformChain {
		if id, ok := s.resolve(ctx, r.loc); ok {
			id.Source = s.name
			log.FromContext(ctx).V(1).Info("platform resolved", "platform", id.Platform.String(), "namespace", id.Namespace, "source", s.name)
			return id, nil
		}
	}
	return Identity{}, ErrPlatformUnresolved
}

// ResolveRedirectURL returns the override when set, otherwise the first URL
// a redirect strategy finds, along with where it came from.
func (r *Resolver) ResolveRedirectURL(ctx context.Context, override string) (string, string, error) {
	if override != "" {
		u, err := config.ValidateRedirectURL(override)
		if err != nil {
			return "", "", err
		}
		return u, "override", nil
	}
	for _, s := range r.redirectChain {
		found, ok := s.resolve(ctx, r.loc)
		if !ok {
			continue
		}
		u, err := config.ValidateRedirectURL(found)
		if err != nil {
			log.FromContext(ctx).Info("ignoring discovered redirect URL", "source", s.name, "url", found, "error", err.Error())
			continue
		}
		return u, s.name, nil
	}
	return "", "", ErrRedirectUnresolved
}

// ResolveRouteHost returns the host for the primary redirect route: the
// override verbatim, else the current host of the platform's dashboard
// route, else empty.
func (r *Resolver) ResolveRouteHost(ctx context.Context, id Identity, override string) (string, string, error) {
	if override != "" {
		if err := config.ValidateRouteHost(override); err != nil {
			return "", "", err
		}
		return override, "override", nil
	}
	if host := r.loc.RouteHost(ctx, id.Namespace, id.Platform.DashboardRoute()); host.Set() {
		return host.Value, "route/" + id.Platform.DashboardRoute(), nil
	}
	return "", "", nil
}

// ResolveRedirect resolves the platform, the redirect URL and the route host,
// and returns the redirect targets to render.
func (r *Resolver) ResolveRedirect(ctx context.Context, ov Overrides) (Facts, error) {
	id, err := r.ResolvePlatform(ctx)
	if err != nil {
		return Facts{}, err
	}

	redirectURL, urlSource, err := r.ResolveRedirectURL(ctx, ov.RedirectURL)
	if err != nil {
		return Facts{}, err
	}

	host, hostSource, err := r.ResolveRouteHost(ctx, id, ov.RouteHost)
	if err != nil {
		return Facts{}, err
	}

	primary := RedirectTarget{
		Namespace:   id.Namespace,
		RouteName:   id.Platform.DashboardRoute(),
		RedirectURL: redirectURL,
		Host:        host,
	}
	facts := Facts{
		Identity:          id,
		RedirectURLSource: urlSource,
		RouteHostSource:   hostSource,
		Targets:           []RedirectTarget{primary},
	}
	if legacy, ok := LegacyGatewayTarget(primary); ok {
		log.FromContext(ctx).Info("redirect URL uses the rh-ai host, adding legacy gateway route", "host", legacy.Host)
		facts.Targets = append(facts.Targets, legacy)
	}
	return facts, nil
}

// LegacyGatewayTarget returns the extra target needed when the redirect URL
// points at the rh-ai host. The route is named data-science-gateway-legacy so
// it does not collide with the real gateway route, while its host is the old
// gateway hostname in the same apps domain.
func LegacyGatewayTarget(primary RedirectTarget) (RedirectTarget, bool) {
	u, err := url.Parse(primary.RedirectURL)
	if err != nil {
		return RedirectTarget{}, false
	}
	hostname := u.Hostname()
	if !strings.Contains(hostname, nextGenHostMarker) {
		return RedirectTarget{}, false
	}

	legacy := RedirectTarget{
		Namespace:   primary.Namespace,
		RouteName:   legacyGatewayRoute,
		RedirectURL: primary.RedirectURL,
	}
	if _, domain, ok := strings.Cut(hostname, "."); ok && domain != "" {
		legacy.Host = fmt.Sprintf("%s.%s", gatewayRoute, domain)
	}
	return legacy, true
}

// fromConsoleLink uses the href of the first console link whose text names
// the product.
func fromConsoleLink(ctx context.Context, loc *locator.Locator) (string, bool) {
	links, err := loc.ConsoleLinks(ctx)
	if err != nil {
		log.FromContext(ctx).V(1).Info("console links not readable", "error", err.Error())
		return "", false
	}
	for _, l := range links {
		if !strings.Contains(l.Text, rhoaiProductName) && !strings.Contains(l.Text, odhProductName) {
			continue
		}
		if href := strings.TrimRight(l.Href, "/"); href != "" {
			return href, true
		}
	}
	return "", false
}

// fromGatewayRoute builds an https URL from the gateway route's host.
func fromGatewayRoute(ctx context.Context, loc *locator.Locator) (string, bool) {
	host, err := loc.FindRouteHost(ctx, gatewayRoute)
	if err != nil {
		log.FromContext(ctx).V(1).Info("routes not readable", "error", err.Error())
		return "", false
	}
	if !host.Set() {
		return "", false
	}
	return "https://" + host.Value, true
}
