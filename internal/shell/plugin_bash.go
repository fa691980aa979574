package shell

// BashPlugin is the bash plugin source. A DEBUG trap remembers the first
// command of each prompt line and PROMPT_COMMAND logs it with its exit status
// once it finishes, but only while the recording marker exists.
const BashPlugin = `# docpilot shell plugin - auto-generated, do not edit manually
# Source this file from your ~/.bashrc:
#   source ~/.config/docpilot/docpilot.plugin.bash

_docpilot_dir=__DOCPILOT_DATA_DIR__
_docpilot_log_file="$_docpilot_dir/commands.log"
_docpilot_marker="$_docpilot_dir/recording"
_docpilot_cmd=""

_docpilot_preexec() {
  [[ -n "$COMP_LINE" ]] && return
  [[ -n "$_docpilot_cmd" ]] && return
  [[ "$BASH_COMMAND" == _docpilot_* ]] && return
  _docpilot_cmd="$BASH_COMMAND"
}

_docpilot_precmd() {
  local exit_code=$?
  local cmd="$_docpilot_cmd"
  _docpilot_cmd=""
  [[ -n "$cmd" ]] || return
  [[ -f "$_docpilot_marker" ]] || return
  cmd="${cmd//$'\n'/ }"
  cmd="${cmd//$'\t'/ }"
  [[ "$cmd" =~ ^[[:space:]]*(.*/)?docpilot([[:space:]]|$) ]] && return
  printf '%s\t%s\t%s\t%s\n' "$(date +%s)" "$exit_code" "$PWD" "$cmd" >> "$_docpilot_log_file"
}

trap '_docpilot_preexec' DEBUG
PROMPT_COMMAND="_docpilot_precmd${PROMPT_COMMAND:+; $PROMPT_COMMAND}"
`
