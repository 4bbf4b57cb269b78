package decider

import (
	"strconv"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// DesiredProbe is the readiness probe the guardrails orchestrator must expose.
type DesiredProbe struct {
	Path                string
	Port                string
	Scheme              corev1.URIScheme
	InitialDelaySeconds int32
	TimeoutSeconds      int32
	PeriodSeconds       int32
	SuccessThreshold    int32
	FailureThreshold    int32
}

// OrchestratorProbe returns the fixed readiness probe for guardrails
// orchestrator deployments. It returns a fresh value on every call.
func OrchestratorProbe() DesiredProbe {
	return DesiredProbe{
		Path:                "/health",
		Port:                "8034",
		Scheme:              corev1.URISchemeHTTP,
		InitialDelaySeconds: 10,
		TimeoutSeconds:      10,
		PeriodSeconds:       20,
		SuccessThreshold:    1,
		FailureThreshold:    3,
	}
}

// ContainerProbe renders the desired probe as a core/v1 Probe. Numeric ports
// become integer ports; anything else is sent as a named port.
func (d DesiredProbe) ContainerProbe() *corev1.Probe {
	port := intstr.FromString(d.Port)
	if n, err := strconv.ParseInt(d.Port, 10, 32); err == nil {
		port = intstr.FromInt32(int32(n))
	}
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path:   d.Path,
				Port:   port,
				Scheme: d.Scheme,
			},
		},
		InitialDelaySeconds: d.InitialDelaySeconds,
		TimeoutSeconds:      d.TimeoutSeconds,
		PeriodSeconds:       d.PeriodSeconds,
		SuccessThreshold:    d.SuccessThreshold,
		FailureThreshold:    d.FailureThreshold,
	}
}
