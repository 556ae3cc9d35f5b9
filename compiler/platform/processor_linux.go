package platform

func processor(string) (string, error) { return "", nil }
