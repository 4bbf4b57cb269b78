package k8s

import (
	"context"
	"errors"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrNotAuthenticated means the API server rejected our credentials.
var ErrNotAuthenticated = errors.New("not logged in to the cluster")

// NotFoundError reports a missing environment precondition, such as the
// target namespace.
type NotFoundError struct {
	What string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Name)
}

// CheckAuthenticated asks the API server who we are. A 401 maps to
// ErrNotAuthenticated; clusters without the SelfSubjectReview API are
// accepted as-is.
func CheckAuthenticated(ctx context.Context, cs kubernetes.Interface) (string, error) {
	review, err := cs.AuthenticationV1().SelfSubjectReviews().Create(ctx, &authenticationv1.SelfSubjectReview{}, metav1.CreateOptions{})
	switch {
	case err == nil:
		return review.Status.UserInfo.Username, nil
	case apierrors.IsUnauthorized(err):
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	case apierrors.IsNotFound(err), apierrors.IsForbidden(err):
		return "", nil
	default:
		return "", fmt.Errorf("failed to reach cluster: %w", err)
	}
}

// CheckNamespace verifies the namespace exists.
func CheckNamespace(ctx context.Context, cs kubernetes.Interface, namespace string) error {
	_, err := cs.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return &NotFoundError{What: "namespace", Name: namespace}
	case apierrors.IsUnauthorized(err):
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	case apierrors.IsForbidden(err):
		// Namespace-scoped users may not read Namespace objects.
		return nil
	default:
		return fmt.Errorf("failed to get namespace %s: %w", namespace, err)
	}
}
