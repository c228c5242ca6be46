package selection

import "hash/fnv"

// Assign maps a subject deterministically onto one of the trial keys. The
// partition is a pure function of subject, experiment name, and the declared
// key order: no shared state, so assignment is consistent across replicas.
// Changing the trial set reshuffles assignments.
func Assign(subject, experimentName string, keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	bucket := hashUint32(subject+":"+experimentName) % uint32(len(keys))
	return keys[bucket]
}

func hashUint32(value string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return h.Sum32()
}
