// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command memcheck reads leak reports produced by a memcheck registry,
// either from dump files or from a running debug server.
package main

func main() {
	execute()
}
