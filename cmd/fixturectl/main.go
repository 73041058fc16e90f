package main

import (
	"os"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

func main() {
	code := execute()
	gomidi.CloseDriver()
	os.Exit(code)
}
