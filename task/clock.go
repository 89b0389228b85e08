package task

import "time"

// defaultNow is the only place production code calls time.Now for
// TypedError/Metrics timestamps. It is a var rather than a plain
// function so a test can swap in a fixed clock without threading a
// Clock type through every constructor; tests must restore the
// original value when done.
var defaultNow = time.Now
