package discovery

var systemPaths = []string{"/Library/Audio/Plug-Ins/CLAP"}
