package resolver

import (
	"context"
	"errors"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
)

// Platform identifies which distribution of the data science platform is
// installed.
type Platform int

const (
	// Unknown means no strategy identified the platform.
	Unknown Platform = iota
	// RHOAI is Red Hat OpenShift AI.
	RHOAI
	// ODH is Open Data Hub.
	ODH
)

func (p Platform) String() string {
	switch p {
	case RHOAI:
		return "RHOAI"
	case ODH:
		return "ODH"
	default:
		return "UNKNOWN"
	}
}

// Namespace is the default applications namespace of the platform.
func (p Platform) Namespace() string {
	switch p {
	case RHOAI:
		return "redhat-ods-applications"
	case ODH:
		return "opendatahub"
	default:
		return ""
	}
}

// DashboardRoute is the name of the platform's legacy dashboard route.
func (p Platform) DashboardRoute() string {
	switch p {
	case RHOAI:
		return "rhods-dashboard"
	case ODH:
		return "odh-dashboard"
	default:
		return ""
	}
}

// Well-known markers used during detection.
const (
	platformTypeAnnotation = "platform.opendatahub.io/type"
	rhoaiProductName       = "OpenShift AI"
	odhProductName         = "Open Data Hub"
	rhoaiPackage           = "rhods-operator"
	odhPackage             = "opendatahub-operator"
)

// ErrPlatformUnresolved is returned when no strategy identifies the platform.
var ErrPlatformUnresolved = errors.New("unable to detect platform type: no OdhDashboardConfig and no rhods-operator or opendatahub-operator subscription found")

// Identity is a resolved platform together with its applications namespace.
type Identity struct {
	Platform  Platform
	Namespace string
	// Source names the strategy that produced the identity.
	Source string
}

type platformStrategy struct {
	name    string
	resolve func(ctx context.Context, loc *locator.Locator) (Identity, bool)
}

func defaultPlatformChain() []platformStrategy {
	return []platformStrategy{
		{name: "odhdashboardconfig", resolve: fromDashboardConfig},
		{name: "subscription", resolve: fromSubscriptions},
	}
}

// fromDashboardConfig reads the platform from the dashboard config's
// annotations and labels. The object's namespace becomes the applications
// namespace.
func fromDashboardConfig(ctx context.Context, loc *locator.Locator) (Identity, bool) {
	configs, err := loc.DashboardConfigs(ctx)
	if err != nil {
		log.FromContext(ctx).V(1).Info("dashboard configs not readable", "error", err.Error())
		return Identity{}, false
	}

	for _, cfg := range configs {
		app := cfg.Labels["app"]
		var p Platform
		switch {
		case strings.Contains(cfg.Annotations[platformTypeAnnotation], rhoaiProductName) || app == RHOAI.DashboardRoute():
			p = RHOAI
		case app == ODH.DashboardRoute():
			p = ODH
		default:
			continue
		}
		ns := cfg.Namespace
		if ns == "" {
			ns = p.Namespace()
		}
		return Identity{Platform: p, Namespace: ns}, true
	}
	return Identity{}, false
}

// fromSubscriptions looks for the operator's OLM subscription. RHOAI wins
// when both are present.
func fromSubscriptions(ctx context.Context, loc *locator.Locator) (Identity, bool) {
	pkgs, err := loc.SubscriptionPackages(ctx)
	if err != nil {
		log.FromContext(ctx).V(1).Info("subscriptions not readable", "error", err.Error())
		return Identity{}, false
	}

	has := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		has[p] = true
	}
	switch {
	case has[rhoaiPackage]:
		return Identity{Platform: RHOAI, Namespace: RHOAI.Namespace()}, true
	case has[odhPackage]:
		return Identity{Platform: ODH, Namespace: ODH.Namespace()}, true
	}
	return Identity{}, false
}
