package publishers

import "github.com/atlas-sanctum/vrc-issuer/pkg/logging"

// Logger defines the logging surface publishers rely on.
type Logger = logging.Logger
