package client_test

import (
	"fmt"
	"time"

	"github.com/adamwoolhether/fetch/client"
)

func ExampleBuild() {
	c, err := client.Build(
		client.WithTimeout(10*time.Minute),
		client.WithUserAgent("example/1.0"),
		client.WithThrottle(2, 4),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = c
	fmt.Println("client built")
	// Output: client built
}

func ExampleRangeHeader() {
	fmt.Println(client.RangeHeader(4000, 10000))
	fmt.Println(client.RangeHeader(4000, 0))
	// Output:
	// bytes=4000-9999
	// bytes=4000-
}
