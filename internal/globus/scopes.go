package globus

// Resource servers and scopes used by the transfer client.
const (
	TransferResourceServer = "transfer.api.globus.org"
	AuthResourceServer     = "auth.globus.org"

	// TransferAll grants full use of the transfer API.
	TransferAll = "urn:globus:auth:scope:transfer.api.globus.org:all"
)

// CollectionDataAccessScope returns the transfer scope with a dependent
// data_access consent for one mapped collection. These are the strings a
// ConsentRequired error asks for.
func CollectionDataAccessScope(collectionID string) string {
	return TransferAll + "[*https://auth.globus.org/scopes/" + collectionID + "/data_access]"
}

// MergeScopes concatenates scope lists, dropping empty strings and
// duplicates while keeping first-seen order.
func MergeScopes(lists ...[]string) []string {
	seen := make(map[string]bool)

	var out []string

	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}

			seen[s] = true
			out = append(out, s)
		}
	}

	return out
}
