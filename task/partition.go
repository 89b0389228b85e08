package task

// Partition groups a batch's Results by outcome. Every Result in the
// input appears in exactly one of OK, Failure, Aborted, and Timeout;
// every non-OK Result also appears in Errors.
type Partition[T any] struct {
	OK       []Result[T]
	Errors   []Result[T]
	Failure  []Result[T]
	Aborted  []Result[T]
	Timeout  []Result[T]
}

// PartitionAll splits results by ResultType. Failure, Aborted, and
// Timeout are mutually exclusive subsets of Errors; Errors is every
// non-OK result.
func PartitionAll[T any](results []Result[T]) Partition[T] {
	var p Partition[T]
	for _, r := range results {
		if r.Ok() {
			p.OK = append(p.OK, r)
			continue
		}
		p.Errors = append(p.Errors, r)
		switch r.Type {
		case ResultAborted:
			p.Aborted = append(p.Aborted, r)
		case ResultTimeout:
			p.Timeout = append(p.Timeout, r)
		default:
			p.Failure = append(p.Failure, r)
		}
	}
	return p
}
