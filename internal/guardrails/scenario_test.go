package guardrails_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/types"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/guardrails"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s/fakes"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/locator"
)

const namespace = "trustyai-demo"

var _ = Describe("Guardrails readiness probe reconcile", func() {
	var (
		ctx     context.Context
		cluster *fakes.FakeCluster
	)

	deploymentRef := func(name string) k8s.Ref {
		return k8s.Ref{Kind: k8s.KindDeployment, Namespace: namespace, Name: name}
	}

	run := func(mode executor.Mode) executor.Summary {
		summary, err := guardrails.Reconcile(ctx, cluster, namespace, executor.New(cluster, mode))
		Expect(err).NotTo(HaveOccurred())
		return summary
	}

	BeforeEach(func() {
		ctx = context.Background()
		By("seeding three orchestrators: a converged, b without a probe, c without a deployment")
		cluster = fakes.NewFakeCluster(
			fakes.GuardrailsOrchestrator(namespace, "a"),
			fakes.GuardrailsOrchestrator(namespace, "b"),
			fakes.GuardrailsOrchestrator(namespace, "c"),
			fakes.Deployment(namespace, "a", fakes.HTTPProbe("/health", int64(8034))),
			fakes.Deployment(namespace, "b", nil),
		)
	})

	Context("in apply mode", func() {
		It("patches only the drifted deployment and waits for its rollout", func() {
			summary := run(executor.Apply)

			Expect(summary.Found()).To(Equal(3))
			Expect(summary.Succeeded()).To(Equal(2))
			Expect(summary.Failed()).To(BeZero())
			Expect(summary.Count(executor.StatusSkipped)).To(Equal(1))

			Expect(cluster.Calls).To(HaveLen(1))
			Expect(cluster.Calls[0].Ref).To(Equal(deploymentRef("b")))
			Expect(cluster.Calls[0].PatchType).To(Equal(types.StrategicMergePatchType))
			Expect(cluster.WaitCalls).To(ConsistOf(deploymentRef("b")))
		})

		It("converges in one run", func() {
			run(executor.Apply)

			By("running again against the patched state")
			second := run(executor.Apply)
			Expect(second.Count(executor.StatusPatched)).To(BeZero())
			Expect(second.Count(executor.StatusOK)).To(Equal(2))
			Expect(cluster.MutationCount()).To(Equal(1))

			probe, found := locator.New(cluster).ReadProbe(ctx, namespace, "b")
			Expect(found).To(BeTrue())
			Expect(decider.Classify(decider.OrchestratorProbe(), &decider.ObservedProbeState{
				Path: probe.Path,
				Port: probe.Port,
			})).To(Equal(decider.Converged))
		})

		It("keeps going when one deployment does not roll out", func() {
			cluster.Add(fakes.Deployment(namespace, "a", nil))
			cluster.ReadyErrors[deploymentRef("a")] = k8s.ErrNotReady

			summary := run(executor.Apply)
			Expect(summary.Failed()).To(Equal(1))
			Expect(summary.FailedRefs()).To(ConsistOf(deploymentRef("a")))
			Expect(summary.Count(executor.StatusPatched)).To(Equal(1))
			Expect(cluster.Calls).To(HaveLen(2))
		})
	})

	Context("in inspect mode", func() {
		It("reports drift without writing", func() {
			summary := run(executor.Inspect)

			Expect(summary.Count(executor.StatusNeedsAction)).To(Equal(1))
			Expect(summary.Count(executor.StatusMissing)).To(Equal(1))
			Expect(summary.Failed()).To(BeZero())
			Expect(cluster.MutationCount()).To(BeZero())
			Expect(cluster.WaitCalls).To(BeEmpty())
		})
	})

	Context("in simulate mode", func() {
		It("predicts the same outcome as apply", func() {
			simulated := run(executor.Simulate)
			Expect(cluster.MutationCount()).To(BeZero())

			applied := run(executor.Apply)
			Expect(simulated.Changes()).To(Equal(applied.Changes()))
			Expect(simulated.Succeeded()).To(Equal(applied.Succeeded()))
			for _, o := range simulated.Outcomes {
				if o.Status == executor.StatusPatched {
					Expect(o.DryRun).To(BeTrue())
				}
			}
		})
	})

	Context("when the namespace has no orchestrators", func() {
		It("fails before planning", func() {
			cluster = fakes.NewFakeCluster(fakes.Deployment(namespace, "a", nil))
			_, err := guardrails.Reconcile(ctx, cluster, namespace, executor.New(cluster, executor.Apply))
			Expect(err).To(MatchError(guardrails.ErrNoInstances))
			Expect(cluster.MutationCount()).To(BeZero())
		})
	})
})
