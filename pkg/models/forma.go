package models

import "fmt"

// ProtocolVersion is the wire protocol spoken by the Forma connector.
const ProtocolVersion = "1.0"

// Commands accepted in FormaRequest.ExecuteCommand.
const (
	CommandImportMesh = "importmesh"
	CommandExportMesh = "exportmesh"
	CommandDeleteMesh = "deletemesh"
)

// FormaRequest is the body posted by the Forma connector to the link endpoint.
type FormaRequest struct {
	// ProtocolVersion is the connector's wire protocol version.
	ProtocolVersion string `json:"protocol_version"`
	// ExtensionVersion is the bridge version the connector was built against.
	ExtensionVersion string `json:"extension_version"`
	// ExecuteCommand selects the operation (importmesh, exportmesh, deletemesh).
	ExecuteCommand string `json:"execute_command"`
	// FormaPath is the source-side logical path.
	FormaPath string `json:"forma_path"`
	// USDPath is the destination document path.
	USDPath string `json:"usd_path"`
	// AutosaveStage saves the document after each change.
	AutosaveStage bool `json:"autosave_stage"`
}

// NewFormaRequest returns a request populated with the connector defaults.
// Decode into it so missing fields keep their defaults.
func NewFormaRequest() FormaRequest {
	return FormaRequest{
		ProtocolVersion:  ProtocolVersion,
		ExtensionVersion: "0.0",
		AutosaveStage:    true,
	}
}

func (r FormaRequest) String() string {
	return fmt.Sprintf("protocol_version=%s extension_version=%s execute_command=%s forma_path=%s usd_path=%s autosave_stage=%t",
		r.ProtocolVersion, r.ExtensionVersion, r.ExecuteCommand, r.FormaPath, r.USDPath, r.AutosaveStage)
}

// FormaResponse is returned for every link request.
type FormaResponse struct {
	ExtensionVersionIsValid bool     `json:"extension_version_is_valid"`
	Status                  string   `json:"status"`
	Succeeded               bool     `json:"succeeded"`
	USDPath                 string   `json:"usd_path"`
	SelectedPrims           []string `json:"selected_prims"`
}

// NewFormaResponse returns a succeeded response with an empty prim selection.
func NewFormaResponse(versionValid bool, status string) FormaResponse {
	return FormaResponse{
		ExtensionVersionIsValid: versionValid,
		Status:                  status,
		Succeeded:               true,
		SelectedPrims:           []string{},
	}
}

// FileBrowserRequest asks the bridge to let the user pick a file.
type FileBrowserRequest struct {
	ExtensionVersion   string   `json:"extension_version"`
	ProtocolVersion    string   `json:"protocol_version"`
	WindowTitle        string   `json:"window_title"`
	ItemFilterOptions  []string `json:"item_filter_options"`
	ShowFileExtensions []string `json:"show_file_extensions"`
	ApplyButtonLabel   string   `json:"apply_button_label"`
	InitialURL         string   `json:"initial_url"`
}

// NewFileBrowserRequest returns a request populated with the connector defaults.
func NewFileBrowserRequest() FileBrowserRequest {
	return FileBrowserRequest{
		ExtensionVersion:   "0.0",
		ProtocolVersion:    ProtocolVersion,
		WindowTitle:        "Input Filename or Choose File to Override",
		ItemFilterOptions:  []string{"USD Files (*.usd, *.usda, *.usdc, *.usdz)", "All Files (*)"},
		ShowFileExtensions: []string{".usd", ".usda", ".usdc", ".usdz"},
		ApplyButtonLabel:   "Save",
		InitialURL:         "omniverse://",
	}
}

// FileBrowserResponse carries the picked url. An empty URL means the dialog was cancelled.
type FileBrowserResponse struct {
	ExtensionVersionIsValid bool   `json:"extension_version_is_valid"`
	URL                     string `json:"url"`
	Options                 string `json:"options"`
	Status                  string `json:"status"`
	Succeeded               bool   `json:"succeeded"`
}

// NoOptionsSelected is the options value reported by the file browser.
const NoOptionsSelected = "None Selected"
