package domain

const (
	ConnectivityUnknown ConnectivityStatus = iota
	ConnectivityFailed
	ConnectivityConnected
)

var connectivityStatusString = map[ConnectivityStatus]string{
	ConnectivityUnknown:   "Unknown",
	ConnectivityFailed:    "Failed",
	ConnectivityConnected: "Connected",
}

// ConnectivityStatus is the state of the connection with the blockchain
// gateway. Unknown is only the initial state.
type ConnectivityStatus int

func (s ConnectivityStatus) String() string {
	return connectivityStatusString[s]
}
