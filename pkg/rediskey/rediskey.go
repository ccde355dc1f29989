package rediskey

import "fmt"

const LockPrefix = "reputation:lock"

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildLockKey returns "reputation:lock:{name}"
func BuildLockKey(name string) string {
	return NamespaceKey(LockPrefix, name)
}
