package viewer

import (
	"github.com/lanikai/camwatch/internal/logging"
)

var log = logging.DefaultLogger.WithTag("viewer")
