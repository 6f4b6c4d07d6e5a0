package main

import "github.com/nsmo-public/LiveMeetingNotes-sub001/internal/bootstrap"

func main() {
	bootstrap.Run()
}
