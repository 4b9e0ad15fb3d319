package atlas

import "github.com/atlas-sanctum/vrc-issuer/pkg/logging"

// Logger defines the logging surface the client relies on.
type Logger = logging.Logger
