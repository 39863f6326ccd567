package topics

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const DefaultNamespace = "post-created"

// Namer derives provider topic names. The environment label keeps staging and
// production subscribers on disjoint topics.
type Namer struct {
	namespace string
	env       string
}

func NewNamer(namespace, env string) Namer {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		env = "dev"
	}
	return Namer{namespace: namespace, env: env}
}

// Topic returns <namespace>-<env>__<communityID>.
func (n Namer) Topic(communityID uuid.UUID) string {
	return fmt.Sprintf("%s-%s__%s", n.namespace, n.env, communityID)
}
