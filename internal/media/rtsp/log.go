package rtsp

import (
	"github.com/lanikai/camwatch/internal/logging"
)

var log = logging.DefaultLogger.WithTag("rtsp")
