package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagPrefs        string
	flagCameraCount  int
	flagURLs         [3]string
	flagListen       string
	flagDebugDisplay bool
	flagPixelFormat  string
	flagStallTimeout time.Duration
	flagHelp         bool
	flagVersion      bool
)

func init() {
	flag.StringVarP(&flagPrefs, "prefs", "p", "", "Preferences file")
	flag.IntVarP(&flagCameraCount, "camera-count", "n", 0, "Number of cameras")
	for i := range flagURLs {
		flag.StringVar(&flagURLs[i], fmt.Sprintf("url%d", i+1), "", fmt.Sprintf("URL of camera %d", i+1))
	}
	flag.StringVarP(&flagListen, "listen", "l", ":8000", "Viewer HTTP address")
	flag.BoolVarP(&flagDebugDisplay, "debug-display", "d", false, "Overlay watchdog counters")
	flag.StringVar(&flagPixelFormat, "pixel-format", "native", "Frame format handed to viewers")
	flag.DurationVar(&flagStallTimeout, "stall-timeout", 8*time.Second, "Replace a stream silent for this long")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Keeps up to three camera streams on screen, reconnecting stalled ones

Usage: camwatchd [OPTION]...

Cameras:
  -n, --camera-count=NUM  Number of cameras, 1 to 3 (default: 3)
      --url1=URL          Camera 1 (rtsp://, http://, file://)
      --url2=URL          Camera 2
      --url3=URL          Camera 3
  -p, --prefs=FILE        Read "key = value" preferences from FILE. Flags
                          override the file, which overrides CAMWATCH_*
                          environment variables.

Streaming:
      --pixel-format=FMT  native or rgba (default: native)
      --stall-timeout=DUR Replace a stream silent for longer (default: 8s)

Viewer:
  -l, --listen=ADDR       HTTP address (default: :8000)
  -d, --debug-display     Overlay generation and stall counters

Miscellaneous:
  -h, --help              Prints this help message and exits
  -v, --version           Prints version information and exits

Log levels are set with LOGLEVEL, e.g. LOGLEVEL=monitor=debug,info`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//   ___  __ _  _ __ ___  __      __ __ _ | |_  ___ | |__
	//  / __|/ _` || '_ ` _ \ \ \ /\ / // _` || __|/ __|| '_ \
	// | (__| (_| || | | | | | \ V  V /| (_| || |_| (__ | | | |
	//  \___|\__,_||_| |_| |_|  \_/\_/  \__,_| \__|\___||_| |_|

	r.Printf("  ___ ")
	y.Printf(" __ _ ")
	b.Printf(" _ __ ___  ")
	y.Printf("__      __")
	r.Printf(" __ _ ")
	b.Printf("| |_ ")
	y.Printf(" ___ ")
	r.Println("| |__  ")

	r.Printf(" / __|")
	y.Printf("/ _` |")
	b.Printf("| '_ ` _ \\ ")
	y.Printf("\\ \\ /\\ / /")
	r.Printf("/ _` |")
	b.Printf("| __|")
	y.Printf("/ __|")
	r.Println("| '_ \\ ")

	r.Printf("| (__")
	y.Printf("| (_| |")
	b.Printf("| | | | | |")
	y.Printf(" \\ V  V / ")
	r.Printf("| (_| |")
	b.Printf("| |_")
	y.Printf("| (__ ")
	r.Println("| | | |")

	r.Printf(" \\___|")
	y.Printf("\\__,_|")
	b.Printf("|_| |_| |_|")
	y.Printf("  \\_/\\_/  ")
	r.Printf("\\__,_|")
	b.Printf(" \\__|")
	y.Printf("\\___|")
	r.Println("|_| |_|")

	fmt.Println()
	fmt.Println(helpString)
}

// Populated via -ldflags="-X main.GitRevisionId=...".
var GitRevisionId = "dev"

func version() {
	fmt.Println("camwatchd", GitRevisionId)
}
