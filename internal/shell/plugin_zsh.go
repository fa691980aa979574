package shell

const dataDirPlaceholder = "__DOCPILOT_DATA_DIR__"

// ZshPlugin is the zsh plugin source. preexec remembers the command line and
// precmd logs it together with its exit status and working directory, but
// only while the recording marker exists.
const ZshPlugin = `# docpilot shell plugin - auto-generated, do not edit manually
# Source this file from your ~/.zshrc:
#   source ~/.config/docpilot/docpilot.plugin.zsh

_docpilot_dir=__DOCPILOT_DATA_DIR__
_docpilot_log_file="$_docpilot_dir/commands.log"
_docpilot_marker="$_docpilot_dir/recording"
_docpilot_cmd=""

_docpilot_preexec() {
  _docpilot_cmd="$1"
}

_docpilot_precmd() {
  local exit_code=$?
  [[ -n "$_docpilot_cmd" ]] || return
  local cmd="$_docpilot_cmd"
  _docpilot_cmd=""
  [[ -f "$_docpilot_marker" ]] || return
  cmd="${cmd//$'\n'/ }"
  cmd="${cmd//$'\t'/ }"
  [[ "$cmd" =~ '^[[:space:]]*(.*/)?docpilot([[:space:]]|$)' ]] && return
  printf '%s\t%s\t%s\t%s\n' "$(date +%s)" "$exit_code" "$PWD" "$cmd" >> "$_docpilot_log_file"
}

autoload -Uz add-zsh-hook
add-zsh-hook preexec _docpilot_preexec
add-zsh-hook precmd _docpilot_precmd
`
