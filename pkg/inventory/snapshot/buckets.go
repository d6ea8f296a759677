package snapshot

const (
	RepositoriesBucket = "Repositories"
	MetaBucket         = "Meta"

	infoKey = "info"
)
