package api

// GraphQL documents for the chatgogo backend. Selections stay minimal: only
// the fields the client actually renders.

const queryGetRoom = `
query getRoom($id: Int!) {
  room(id: $id) {
    id
    users {
      id
      fullName
      email
      avatar
    }
    messages {
      id
      text
      time
      room
      sender {
        id
        fullName
      }
    }
  }
}`

const subscriptionNewMessage = `
subscription newMessage($room: ID!) {
  newMessage(room: $room) {
    id
    text
    time
    room
    sender {
      id
      fullName
    }
  }
}`

const mutationCreateMessage = `
mutation createMessage($text: String!, $sender: ID!, $room: ID!) {
  createMessage(text: $text, sender: $sender, room: $room) {
    message {
      id
      text
      time
      room
      sender {
        id
        fullName
      }
    }
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationUpdateMessage = `
mutation updateMessage($text: String!, $sender: ID!, $room: ID!, $messageId: Int!) {
  updateMessage(text: $text, sender: $sender, room: $room, messageId: $messageId) {
    message {
      id
      text
    }
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationDeleteMessage = `
mutation deleteMessage($messageId: Int!) {
  deleteMessage(messageId: $messageId) {
    success
  }
}`

const mutationRegister = `
mutation register($email: String!, $password1: String!, $password2: String!, $fullName: String!) {
  register(email: $email, password1: $password1, password2: $password2, fullName: $fullName) {
    success
    token
    user {
      id
      email
      fullName
    }
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationLogin = `
mutation login($username: String!, $password: String!) {
  login(username: $username, password: $password) {
    token
    user {
      id
      email
      fullName
    }
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationVerifyToken = `
mutation verifyToken($token: String!) {
  verifyToken(token: $token) {
    payload
  }
}`

const mutationEditUser = `
mutation editUser($fullName: String, $email: String!, $avatar: String) {
  editUser(fullName: $fullName, email: $email, avatar: $avatar) {
    user {
      id
      fullName
      email
      avatar
    }
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationConfirmEmail = `
mutation confirmEmail($email: String!) {
  confirmEmail(email: $email) {
    success
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const mutationResetPassword = `
mutation resetPassword($newPassword1: String!, $newPassword2: String!, $confirmToken: String!, $userId: Int!) {
  resetPassword(newPassword1: $newPassword1, newPassword2: $newPassword2, confirmToken: $confirmToken, userId: $userId) {
    success
    error {
      __typename
      ... on ValidationErrors {
        validationErrors {
          field
          messages
        }
      }
    }
  }
}`

const queryGetUsers = `
query getUsers {
  users {
    id
    fullName
    email
  }
}`

const queryGetRooms = `
query getRooms {
  rooms {
    id
    users {
      id
      fullName
    }
  }
}`

const queryMe = `
query me {
  me {
    id
    email
    fullName
    avatar
  }
}`
