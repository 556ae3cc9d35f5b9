//go:build darwin

package platform

func processor(machine string) (string, error) {
	switch machine {
	case "x86_64":
		return "amd64", nil
	case "Power Macintosh":
		return "powerpc", nil
	}

	return machine, nil
}
